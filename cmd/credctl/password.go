package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPasswords はプロンプトごとにパスワードを1つずつ読み取る。
// 標準入力が端末ならエコーを無効にし、それ以外は1行ずつ読む。
func readPasswords(cmd *cobra.Command, prompts ...string) ([]string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out := make([]string, 0, len(prompts))
		for _, p := range prompts {
			fmt.Fprint(cmd.ErrOrStderr(), p)
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return nil, fmt.Errorf("reading password: %w", err)
			}
			out = append(out, string(b))
		}
		return out, nil
	}
	return readLines(in, len(prompts))
}

func readLines(r io.Reader, n int) ([]string, error) {
	br := bufio.NewReader(r)
	out := make([]string, 0, n)
	for range n {
		line, err := br.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, fmt.Errorf("reading password from stdin: %w", err)
		}
		out = append(out, strings.TrimRight(line, "\r\n"))
	}
	return out, nil
}
