// Точка входа Report Hub — сервиса хранения отчётов сайтов.
// Команды: serve (HTTP API), migrate, user create, sweep.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
