package util

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-cmd/cmd"
	"github.com/pkg/errors"
)

var commandNameWithGOOS = map[string]string{
	"windows": "cmd.exe",
	"linux":   "bash",
}

var commandArgsWithGOOS = map[string][]string{
	"windows": {"/C"},
	"linux":   {"-c"},
}

func commandName(os_ string) string {
	value, ok := commandNameWithGOOS[os_]
	if !ok {
		value = "bash"
	}
	return value
}

func commandArgs(os_ string) []string {
	value, ok := commandArgsWithGOOS[os_]
	if !ok {
		value = []string{}
	}
	return value
}

// ExecV1 通过系统shell执行一条格式化的命令行, 返回退出码、标准输出和标准错误.
// ctx 结束时终止shell进程. 命令行中的参数由调用方负责转义, 见 ShellQuote.
func ExecV1(ctx context.Context, format string, formatArgs ...any) (returnCode int, out, errOut string, err error) {
	args := make([]string, 0)
	args = append(args, commandArgs(runtime.GOOS)...)
	args = append(args, fmt.Sprintf(format, formatArgs...))
	return Exec(ctx, commandName(runtime.GOOS), args...)
}

// ShellQuote 将 s 转义为 POSIX shell 中的单个参数.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Exec 直接执行程序(不经过shell). ctx 结束时终止子进程.
// 程序无法启动时返回 err; 程序返回非零退出码不视为 err, 由调用方依据 returnCode 判定.
func Exec(ctx context.Context, name string, args ...string) (returnCode int, out, errOut string, err error) {
	c := cmd.NewCmd(name, args...)
	statusCh := c.Start()

	var status cmd.Status
	select {
	case status = <-statusCh:
	case <-ctx.Done():
		_ = c.Stop()
		status = <-statusCh
		return -1, strings.Join(status.Stdout, "\n"), strings.Join(status.Stderr, "\n"),
			errors.Wrapf(ctx.Err(), "exec %s", name)
	}

	out = strings.Join(status.Stdout, "\n")
	errOut = strings.Join(status.Stderr, "\n")
	if status.Error != nil {
		return status.Exit, out, errOut, errors.Wrapf(status.Error, "exec %s", name)
	}
	return status.Exit, out, errOut, nil
}
