package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeErrorChans(t *testing.T) {
	http := make(chan error, 1)
	metrics := make(chan error, 1)
	merged := MergeErrorChans(http, metrics)

	http <- errors.New("http listener failed")
	metrics <- errors.New("metrics listener failed")
	close(http)
	close(metrics)

	var got []string
	timeout := time.After(time.Second)
	for {
		select {
		case err, ok := <-merged:
			if !ok {
				require.Len(t, got, 2)
				assert.ElementsMatch(t, []string{"http listener failed", "metrics listener failed"}, got)
				return
			}
			got = append(got, err.Error())
		case <-timeout:
			t.Fatal("timeout waiting for merged errors")
		}
	}
}

func TestMergeErrorChans_NoInputs(t *testing.T) {
	_, ok := <-MergeErrorChans()
	assert.False(t, ok)
}
