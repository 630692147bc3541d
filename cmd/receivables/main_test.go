package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-receivables/testing"
)

func TestServeSkipsInTestMode(t *testing.T) {
	require.NoError(t, serve(context.Background()))
}
