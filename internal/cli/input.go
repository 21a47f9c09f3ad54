package cli

import (
	"bufio"
	"fmt"
	"io"

	"github.com/harun/relaycat/pkg/relay"
)

// maxLineSize bounds a single stdin line; filters with long id lists exceed bufio's 64 KiB default
const maxLineSize = 16 * 1024 * 1024

// readBatch reads newline-delimited lines verbatim until EOF
func readBatch(r io.Reader) (relay.Batch, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var batch relay.Batch
	for scanner.Scan() {
		batch = append(batch, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input line %d: %w", len(batch)+1, err)
	}

	return batch, nil
}
