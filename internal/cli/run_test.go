package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/mmvec/pkg/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Run_Prints_Usage_When_No_Command_Given(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	stdout, _, code := c.Run()
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage: mmvec")
	assert.Contains(t, stdout, "create [flags] <file>")
	assert.Contains(t, stdout, "shell <file>")
}

func Test_Run_Fails_When_Command_Is_Unknown(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	stderr := c.MustFail("frobnicate")
	assert.Contains(t, stderr, "unknown command: frobnicate")
}

func Test_Create_Info_Dump_Round_Trip(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	out := c.MustRun("create", "-n", "3", "--fill", "7", "nums.mmv")
	assert.Contains(t, out, "len=3 cap=3")
	require.FileExists(t, filepath.Join(c.Dir, "nums.mmv"))

	info := c.MustRun("info", "nums.mmv")
	assert.Contains(t, info, "len:      3")
	assert.Contains(t, info, "cap:      3")
	assert.Contains(t, info, "first:    7")

	require.Equal(t, "7\n7\n7", c.MustRun("dump", "nums.mmv"))
}

func Test_Create_Refuses_To_Overwrite_Without_Force(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	c.MustRun("create", "-n", "2", "a.mmv")

	stderr := c.MustFail("create", "-n", "5", "a.mmv")
	assert.Contains(t, stderr, "--force")

	c.MustRun("create", "-n", "5", "--force", "a.mmv")
	assert.Contains(t, c.MustRun("info", "a.mmv"), "len:      5")
}

func Test_Create_Rejects_Unknown_Pattern(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	stderr := c.MustFail("create", "--pattern", "zigzag", "a.mmv")
	assert.Contains(t, stderr, "unknown access pattern")
}

func Test_Shell_Executes_Script_From_Stdin(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	c.MustRun("create", "-n", "4", "--fill", "0", "data.mmv")

	script := strings.Join([]string{
		"push 5",
		"at 4",
		"sum 0 5",
		"sum 0 5",
		"set 0 10",
		"sum 0 5",
		"at 9",
		"bogus",
		"quit",
		"push 99", // never reached
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell", "data.mmv")
	require.Equal(t, 0, code, "stderr: %s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Equal(t, []string{
		"len=5 cap=512",
		"5",
		"5 (created)",
		"5 (cached)",
		"ok",
		"15 (created)",
		"error: index 9 not in [0, 5): mmvec: index out of range",
		"unknown command: bogus (type 'help' for commands)",
	}, lines)

	require.Equal(t, "10\n0\n0\n0\n5", c.MustRun("dump", "data.mmv"))
}

func Test_Shell_Creates_Missing_File(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	stdout, _, code := c.RunWithInput("push 1 2 3\nresize 2\nlen\n", "shell", "new.mmv")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "len=3 cap=512")
	assert.Contains(t, stdout, "len=2 cap=512")

	require.Equal(t, "1\n2", c.MustRun("dump", "new.mmv"))
}

func Test_Shell_Fails_With_Busy_When_File_Is_Locked(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	c.MustRun("create", "-n", "1", "busy.mmv")

	lock, err := fs.NewLocker(fs.NewReal()).TryLock(filepath.Join(c.Dir, "busy.mmv.lock"))
	require.NoError(t, err)

	defer lock.Close()

	stderr := c.MustFail("shell", "busy.mmv")
	assert.Contains(t, stderr, "mmvec: busy")
}

func Test_Dump_Sorted_Leaves_Array_Untouched_And_Removes_Scratch(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	_, _, code := c.RunWithInput("push 3 1 2\n", "shell", "s.mmv")
	require.Equal(t, 0, code)

	require.Equal(t, "1\n2\n3", c.MustRun("dump", "--sorted", "s.mmv"))
	require.Equal(t, "3\n1\n2", c.MustRun("dump", "s.mmv"))

	entries, err := os.ReadDir(c.Dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".sort-", "scratch file left behind")
	}
}

func Test_Dump_Out_Writes_File(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	c.MustRun("create", "-n", "2", "--fill", "-4", "x.mmv")

	out := c.MustRun("dump", "--out", "export.txt", "x.mmv")
	assert.Contains(t, out, "wrote 2 values")

	data, err := os.ReadFile(filepath.Join(c.Dir, "export.txt"))
	require.NoError(t, err)
	require.Equal(t, "-4\n-4\n", string(data))
}

func Test_Info_Warns_When_File_Is_Not_An_Array(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir, "junk.mmv"), []byte(strings.Repeat("x", 64)), 0o600))

	stderr := c.MustFail("info", "junk.mmv")
	assert.Contains(t, stderr, "invalid file format")
	assert.Contains(t, stderr, "warning:")
}

func Test_Config_Init_And_Show(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	out := c.MustRun("config", "init")
	assert.Contains(t, out, ".mmvec.json")

	stderr := c.MustFail("config", "init")
	assert.Contains(t, stderr, "already exists")

	show := c.MustRun("config", "show")
	assert.Contains(t, show, `"access_pattern": "none"`)
	assert.Contains(t, show, "#   project: "+filepath.Join(c.Dir, ".mmvec.json"))
}

func Test_Data_Dir_Resolves_Relative_Paths(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	c.MustRun("--data-dir", "arrays", "create", "-n", "1", "a.mmv")
	require.FileExists(t, filepath.Join(c.Dir, "arrays", "a.mmv"))
}
