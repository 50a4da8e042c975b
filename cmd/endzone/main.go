package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/hitoshi/endzone/internal/app"
)

func main() {
	// 標準出力はfetchコマンドの結果に使うため、ログは標準エラー出力に書く
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if !errors.Is(err, app.ErrNoRecords) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
