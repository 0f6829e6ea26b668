//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadPCAPFile_Disabled(t *testing.T) {
	err := ReadPCAPFile(context.Background(), "capture.pcap", 7510, nil, nil)
	assert.ErrorIs(t, err, ErrPCAPDisabled)
}
