package vos

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleCopyEnv() {
	env := NewMapEnv()
	CopyEnv(env, EnvList{"A=B", "C=D", "E", "F=G=H"})

	fmt.Printf("Environ(): %q\n", env.Environ())
	fmt.Printf("Getenv(\"F\"): %q\n", env.Getenv("F"))

	// Output: Environ(): ["A=B" "C=D" "E=" "F=G=H"]
	// Getenv("F"): "G=H"
}

func ExampleNewMapEnvFromEnvList() {
	env := NewMapEnvFromEnvList([]string{"A=B", "C=D", "E", "F=G=H"})

	fmt.Printf("Environ(): %q\n", env.Environ())
	fmt.Printf("Getenv(\"F\"): %q\n", env.Getenv("F"))

	// Output: Environ(): ["A=B" "C=D" "E=" "F=G=H"]
	// Getenv("F"): "G=H"
}

func ExampleMapEnv_Unsetenv() {
	env := NewMapEnv()
	env.Setenv("A", "B")
	env.Setenv("C", "D")

	fmt.Println("Before:", env.Environ())
	env.Unsetenv("A")
	fmt.Println("After:", env.Environ())

	// Output: Before: [A=B C=D]
	// After: [C=D]
}

func ExampleMapEnv_LookupEnv() {
	env := NewMapEnv()
	env.Setenv("A", "B")

	val, ok := env.LookupEnv("A")
	fmt.Println("Existing", "val:", val, "ok:", ok)
	val, ok = env.LookupEnv("B")
	fmt.Println("Missing", "val:", val, "ok:", ok)

	// Output: Existing val: B ok: true
	// Missing val:  ok: false
}

func TestMapEnv_UserHomeDir(t *testing.T) {
	env := NewMapEnv()

	_, err := env.UserHomeDir()
	assert.True(t, errors.Is(err, ErrNoHome))

	env.Setenv(EnvHome, "")
	_, err = env.UserHomeDir()
	assert.True(t, errors.Is(err, ErrNoHome), "empty HOME counts as unset")

	env.Setenv(EnvHome, "/home/user")
	home, err := env.UserHomeDir()
	assert.NoError(t, err)
	assert.Equal(t, "/home/user", home)
}

func TestOSEnv(t *testing.T) {
	t.Setenv("PIPESH_VOS_TEST", "value")

	var env VEnv = OSEnv{}
	assert.Equal(t, "value", env.Getenv("PIPESH_VOS_TEST"))
	assert.Contains(t, env.Environ(), "PIPESH_VOS_TEST=value")

	assert.NoError(t, env.Unsetenv("PIPESH_VOS_TEST"))
	_, ok := env.LookupEnv("PIPESH_VOS_TEST")
	assert.False(t, ok)
}
