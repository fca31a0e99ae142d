package main

import (
	"io"
	"testing"
	"time"

	"github.com/finmate/finmate/pkg/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectKinds(t *testing.T) {
	all, err := selectKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []string{models.KindDeposit, models.KindSaving, models.KindMortgage, models.KindCredit, models.KindRent}, all)

	one, err := selectKinds("rent")
	require.NoError(t, err)
	assert.Equal(t, []string{models.KindRent}, one)

	_, err = selectKinds("stock")
	assert.EqualError(t, err, `unknown product type "stock"`)

	_, err = selectKinds("")
	assert.Error(t, err)
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions(pflag.NewFlagSet("finsync", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Len(t, opts.kinds, 5)
	assert.Empty(t, opts.fixtures)
	assert.Equal(t, 10*time.Minute, opts.timeout)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		kinds   []string
		wantErr bool
	}{
		{name: "single type", args: []string{"--type", "saving"}, kinds: []string{models.KindSaving}},
		{name: "fixtures", args: []string{"--type=credit", "--fixtures", "products.yaml", "--timeout", "30s"}, kinds: []string{models.KindCredit}},
		{name: "unknown type", args: []string{"--type", "fund"}, wantErr: true},
		{name: "unknown flag", args: []string{"--kind", "deposit"}, wantErr: true},
		{name: "zero timeout", args: []string{"--timeout", "0s"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("finsync", pflag.ContinueOnError)
			flags.SetOutput(io.Discard)
			opts, err := parseOptions(flags, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, opts.kinds)
		})
	}

	opts, err := parseOptions(pflag.NewFlagSet("finsync", pflag.ContinueOnError),
		[]string{"--fixtures", "products.yaml", "--timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, "products.yaml", opts.fixtures)
	assert.Equal(t, 30*time.Second, opts.timeout)
}
