// Package randutil generates the throwaway identifiers and file payloads
// the harness uses for test fixtures.
package randutil

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Hex returns a random hexadecimal string of the given length.
func Hex(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is
		// no sensible fallback for credential material.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)[:length]
}

// UniqueName returns a resource name of the form "<prefix>-<8 hex chars>".
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, Hex(8))
}

// ParseSize parses a dd-style size such as "1K", "4M", or "1G" into bytes.
func ParseSize(size string) (int64, error) {
	if len(size) < 2 {
		return 0, fmt.Errorf("invalid size %q: want an integer followed by K, M, or G", size)
	}
	n, err := strconv.ParseInt(size[:len(size)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", size, err)
	}
	switch strings.ToUpper(size[len(size)-1:]) {
	case "K":
		return n << 10, nil
	case "M":
		return n << 20, nil
	case "G":
		return n << 30, nil
	default:
		return 0, fmt.Errorf("invalid size unit in %q: use K, M, or G", size)
	}
}

// RandomFiles writes amount files of random content into dir, each sized
// uniformly between minSize and maxSize (dd-style strings). It returns the
// generated file names, in creation order, named obj_0, obj_1, and so on.
func RandomFiles(dir string, amount int, minSize, maxSize string) ([]string, error) {
	minBytes, err := ParseSize(minSize)
	if err != nil {
		return nil, err
	}
	maxBytes, err := ParseSize(maxSize)
	if err != nil {
		return nil, err
	}
	if minBytes > maxBytes {
		return nil, fmt.Errorf("min size %s is greater than max size %s", minSize, maxSize)
	}
	if minBytes == 0 {
		return nil, fmt.Errorf("size cannot be zero")
	}

	names := make([]string, 0, amount)
	for i := 0; i < amount; i++ {
		name := fmt.Sprintf("obj_%d", i)
		size := minBytes
		if maxBytes > minBytes {
			delta, err := rand.Int(rand.Reader, big.NewInt(maxBytes-minBytes+1))
			if err != nil {
				return nil, fmt.Errorf("pick random size: %w", err)
			}
			size = minBytes + delta.Int64()
		}
		if err := writeRandomFile(filepath.Join(dir, name), size); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func writeRandomFile(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.CopyN(f, rand.Reader, size); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FileMD5 returns the hex MD5 digest of a file's contents.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MD5SumsMatch reports whether two files have identical MD5 digests.
func MD5SumsMatch(path1, path2 string) (bool, error) {
	sum1, err := FileMD5(path1)
	if err != nil {
		return false, err
	}
	sum2, err := FileMD5(path2)
	if err != nil {
		return false, err
	}
	return sum1 == sum2, nil
}
