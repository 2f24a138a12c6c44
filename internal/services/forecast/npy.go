package forecast

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([<>|=]?)([a-z])(\d+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPYFile decodes a NumPy .npy file.
func ReadNPYFile(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return DecodeNPY(bufio.NewReader(f))
}

// DecodeNPY reads a little-endian, C-ordered f4, f8, i4 or i8 array of rank
// 1 to 3 and returns its values as float64 along with its dimensions.
func DecodeNPY(r io.Reader) ([]float64, []int, error) {
	pre := make([]byte, 8)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, nil, fmt.Errorf("npy preamble: %w", err)
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return nil, nil, fmt.Errorf("npy: bad magic")
	}

	var hlen int
	switch pre[6] {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("npy header length: %w", err)
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("npy header length: %w", err)
		}
		hlen = int(n)
	default:
		return nil, nil, fmt.Errorf("npy: unsupported version %d.%d", pre[6], pre[7])
	}

	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, fmt.Errorf("npy header: %w", err)
	}
	h := string(header)

	m := descrRe.FindStringSubmatch(h)
	if m == nil {
		return nil, nil, fmt.Errorf("npy: missing descr in %q", h)
	}
	order, kind, size := m[1], m[2], m[3]
	if order == ">" {
		return nil, nil, fmt.Errorf("npy: big-endian data not supported")
	}
	if fm := fortranRe.FindStringSubmatch(h); fm != nil && fm[1] == "True" {
		return nil, nil, fmt.Errorf("npy: fortran order not supported")
	}
	sm := shapeRe.FindStringSubmatch(h)
	if sm == nil {
		return nil, nil, fmt.Errorf("npy: missing shape in %q", h)
	}
	dims, err := parseShape(sm[1])
	if err != nil {
		return nil, nil, err
	}
	if len(dims) < 1 || len(dims) > 3 {
		return nil, nil, fmt.Errorf("npy: unsupported rank %d", len(dims))
	}

	n := 1
	for _, d := range dims {
		n *= d
	}
	data := make([]float64, n)
	switch kind + size {
	case "f8":
		err = binary.Read(r, binary.LittleEndian, data)
	case "f4":
		buf := make([]float32, n)
		err = binary.Read(r, binary.LittleEndian, buf)
		for i, v := range buf {
			data[i] = float64(v)
		}
	case "i8":
		buf := make([]int64, n)
		err = binary.Read(r, binary.LittleEndian, buf)
		for i, v := range buf {
			data[i] = float64(v)
		}
	case "i4":
		buf := make([]int32, n)
		err = binary.Read(r, binary.LittleEndian, buf)
		for i, v := range buf {
			data[i] = float64(v)
		}
	default:
		return nil, nil, fmt.Errorf("npy: unsupported dtype %s%s", kind, size)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("npy data: %w", err)
	}
	return data, dims, nil
}

func parseShape(s string) ([]int, error) {
	var dims []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("npy: bad shape %q", s)
		}
		dims = append(dims, d)
	}
	return dims, nil
}

// EncodeNPY writes values as a version 1.0 little-endian f8 array.
func EncodeNPY(w io.Writer, data []float64, dims []int) error {
	n := 1
	parts := make([]string, len(dims))
	for i, d := range dims {
		n *= d
		parts[i] = strconv.Itoa(d)
	}
	if n != len(data) {
		return fmt.Errorf("npy: shape %v holds %d values, got %d", dims, n, len(data))
	}
	shape := strings.Join(parts, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shape)
	// Preamble plus header plus newline is padded to a multiple of 64.
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// WriteNPYFile writes values to path in .npy format.
func WriteNPYFile(path string, data []float64, dims []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeNPY(f, data, dims); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
