package config

import (
	"fmt"
	"os"
)

// Exitf はstderrにメッセージを書いて終了コード1で終了します。
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
