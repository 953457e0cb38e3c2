package display

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommands() (root, child *cobra.Command) {
	root = &cobra.Command{Use: "root"}
	root.PersistentFlags().Bool("json", false, "")
	child = &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	child.Flags().BoolP("json", "j", false, "")
	root.AddCommand(child)
	return root, child
}

func TestShouldOutputJSON(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"default", []string{"child"}, false},
		{"local flag", []string{"child", "--json"}, true},
		{"local short flag", []string{"child", "-j"}, true},
		{"local false overrides", []string{"child", "--json=false"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, child := newCommands()
			root.SetArgs(tt.args)
			require.NoError(t, root.Execute())
			assert.Equal(t, tt.want, ShouldOutputJSON(child))
		})
	}

	assert.False(t, ShouldOutputJSON(nil))
}

func TestShouldOutputJSONGlobalFlag(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)

	root.SetArgs([]string{"child", "--json"})
	require.NoError(t, root.Execute())
	assert.True(t, ShouldOutputJSON(child))
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OutputJSON(&buf, map[string]int{"added": 2}))
	assert.Equal(t, "{\n  \"added\": 2\n}\n", buf.String())
}

func TestTable(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"property", "added"}, [][]string{{"rcl:artist", "2"}}))
	assert.Contains(t, buf.String(), "rcl:artist")
	assert.Contains(t, buf.String(), "property")
}
