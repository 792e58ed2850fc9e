// SPDX-License-Identifier: MIT

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ksulejczak/goservice/control"
)

func TestRunOpRejectsUnknownOperation(t *testing.T) {
	client := control.NewClient("/nonexistent.sock", 0)
	_, err := runOp(client, "fly", "worker")
	assert.ErrorContains(t, err, "unknown operation")
}
