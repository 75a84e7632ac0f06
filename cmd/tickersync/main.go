// Package main - tickersync CLI
// 거래소 상장 목록 ↔ stocks 테이블 ↔ 시세 제공자 3-way 동기화
//
// 사용법:
//
//	go run ./cmd/tickersync sync --file nyse.txt --file nasdaq.txt
//	go run ./cmd/tickersync sync --url https://.../all_tickers.json --dry-run
//	go run ./cmd/tickersync schema init
//	go run ./cmd/tickersync runs
//	go run ./cmd/tickersync serve
package main

import (
	"os"

	"github.com/wonny/tickersync/cmd/tickersync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
