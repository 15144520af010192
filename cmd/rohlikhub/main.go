// rohlikhub はRohlík.cz / Knuspr.de のアカウント情報をキャッシュして提供するサーバー。
//
// 使い方:
//
//	rohlikhub [serve|refresh|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/rohlikhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rohlikhub: %v\n", err)
		os.Exit(1)
	}
}
