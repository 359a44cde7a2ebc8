package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

func readLine(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// readSecret reads without echo. Callers wipe the result with
// memguard.WipeBytes once done.
func readSecret(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return bytes.TrimSpace(secret), nil
}

// readNewSecret asks twice and fails on mismatch.
func readNewSecret(prompt string) ([]byte, error) {
	first, err := readSecret(prompt)
	if err != nil {
		return nil, err
	}
	second, err := readSecret("Repeat: ")
	if err != nil {
		memguard.WipeBytes(first)
		return nil, err
	}
	defer memguard.WipeBytes(second)

	if !bytes.Equal(first, second) {
		memguard.WipeBytes(first)
		return nil, fmt.Errorf("entries do not match")
	}
	return first, nil
}
