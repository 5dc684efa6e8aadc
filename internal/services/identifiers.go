package services

import (
	"fmt"
	"strconv"
	"strings"

	"device-tracker/internal/models"
)

// Fixed identifier widths
const (
	BatchIDLength     = 12
	CartonIDLength    = 16
	SerialIDLength    = 16
	DeviceIDMaxLength = 13
	AliasIDMaxLength  = 32
)

// formatSequence appends seq to prefix, left padded with zeros to width digits.
// It never truncates: a sequence that needs more digits is a ValidationError.
func formatSequence(field, prefix string, seq, width int) (string, error) {
	if width <= 0 {
		return "", models.NewValidationError(field, "%q leaves no room for a sequence number", prefix)
	}
	if seq <= 0 {
		return "", models.NewValidationError(field, "sequence must be positive, got %d", seq)
	}
	digits := strconv.Itoa(seq)
	if len(digits) > width {
		return "", models.NewValidationError(field, "sequence %d overflows %d digits after %q", seq, width, prefix)
	}
	return prefix + strings.Repeat("0", width-len(digits)) + digits, nil
}

// BatchID renders prefix + zero padded seq to 12 characters.
func BatchID(prefix string, seq int) (string, error) {
	return formatSequence("id_prefix", prefix, seq, BatchIDLength-len(prefix))
}

// CartonID renders batchID + "-" + zero padded seq to 16 characters.
func CartonID(batchID string, seq int) (string, error) {
	return formatSequence("batchId", batchID+"-", seq, CartonIDLength-len(batchID)-1)
}

// SerialID renders prefix + zero padded seq to 16 characters.
func SerialID(prefix string, seq int) (string, error) {
	return formatSequence("id_prefix", prefix, seq, SerialIDLength-len(prefix))
}

// sequenceOf parses the numeric suffix following prefix in id.
// An empty id means no sequence has been issued yet.
func sequenceOf(id, prefix string) (int, error) {
	if id == "" {
		return 0, nil
	}
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("id %q does not start with %q", id, prefix)
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil {
		return 0, fmt.Errorf("id %q has a malformed sequence: %w", id, err)
	}
	return n, nil
}

// ceilDiv is ceil(n / size) for positive operands.
func ceilDiv(n, size int) int {
	return (n + size - 1) / size
}
