// Package validate checks that every client produced equivalent
// responses for the same scenario, so measured differences are timing
// and not behavior.
package validate

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// canonicalLine normalizes one response line so that formatting
// differences between clients do not show up as mismatches. JSON lines
// are re-marshaled compactly with sorted keys; anything else passes
// through verbatim.
func canonicalLine(line []byte) []byte {
	if !gjson.ValidBytes(line) {
		return line
	}
	var v interface{}
	if err := json.Unmarshal(line, &v); err != nil {
		return line
	}
	// encoding/json sorts map keys when marshaling.
	out, err := json.Marshal(v)
	if err != nil {
		return line
	}
	return out
}

// hashFile returns the SHA-256 of the file's canonicalized content,
// line by line.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		h.Write(canonicalLine(scanner.Bytes()))
		h.Write([]byte{'\n'})
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
