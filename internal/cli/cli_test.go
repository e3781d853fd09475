package cli

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/rowloader/internal/config"
	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{",", ',', false},
		{";", ';', false},
		{"|", '|', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{"", 0, true},
		{",,", 0, true},
		{`"`, 0, true},
		{"\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// newFlagCmd builds a throwaway command carrying the load flags.
func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "load"}
	cmd.Flags().AddFlagSet(loadCmd.Flags())
	return cmd
}

func TestApplyLoadFlags(t *testing.T) {
	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--table", "people", "--fields", "id,name", "--workers", "4",
		"--skip-header", "--rate", "250", "--write-timeout", "3s",
	}))

	c := config.Load()
	require.NoError(t, applyLoadFlags(cmd, &c))
	assert.Equal(t, "people", c.Table)
	assert.Equal(t, []string{"id", "name"}, c.Fields)
	assert.Equal(t, 4, c.Workers)
	assert.True(t, c.SkipHeader)
	assert.Equal(t, 250.0, c.RateLimit)
	assert.Equal(t, 3*time.Second, c.WriteTimeout)
	assert.Equal(t, 50*time.Millisecond, c.PollInterval, "unset flags keep config values")
}

func TestApplyLoadFlagsRejectsZeroWorkers(t *testing.T) {
	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--workers", "0"}))

	c := config.Load()
	assert.Error(t, applyLoadFlags(cmd, &c))
}

func TestApplyLoadFlagsNoFlags(t *testing.T) {
	c := config.Load()
	before := c
	require.NoError(t, applyLoadFlags(&cobra.Command{Use: "runs"}, &c))
	assert.Equal(t, before, c)
}

func TestProgressDisabledWithoutFlag(t *testing.T) {
	assert.False(t, progressEnabled(&cobra.Command{Use: "count"}))

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--progress=false"}))
	assert.False(t, progressEnabled(cmd))
}

type fakeLoaderSource struct {
	c         *metrics.Collector
	submitted int64
	finished  bool
}

func (f *fakeLoaderSource) Collector() *metrics.Collector { return f.c }
func (f *fakeLoaderSource) Submitted() int64              { return f.submitted }
func (f *fakeLoaderSource) Finished() bool                { return f.finished }

func TestProgressModelTicks(t *testing.T) {
	src := &fakeLoaderSource{c: metrics.NewCollector(), submitted: 4}
	src.c.IncrementSuccess()
	src.c.IncrementSuccess()
	src.c.IncrementFailure()

	m := newProgressModel(src, nil)
	next, cmd := m.Update(tickMsg(time.Now()))
	pm := next.(progressModel)
	assert.False(t, pm.done)
	assert.NotNil(t, cmd, "keeps polling while running")
	assert.Contains(t, pm.renderContent(), "2/4 rows written")

	src.finished = true
	src.c.RecordRetrySuccess()
	next, _ = pm.Update(tickMsg(time.Now()))
	pm = next.(progressModel)
	assert.True(t, pm.done)
	assert.Contains(t, pm.renderContent(), "3/4 delivered")
}

func TestProgressModelCtrlCCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeLoaderSource{c: metrics.NewCollector()}

	m := newProgressModel(src, cancel)
	next, cmd := m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	pm := next.(progressModel)

	assert.Nil(t, cmd, "view stays up until the load finishes")
	assert.True(t, pm.stopping)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Contains(t, pm.renderContent(), "stopping")
}
