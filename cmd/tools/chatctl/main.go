// Command chatctl inspects and edits stored chat sessions from the terminal,
// using the same configuration as the API server.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	root, app := newRootCmd(openService)
	err := root.Execute()
	if closeErr := app.close(); closeErr != nil {
		log.Printf("[WARN] 关闭存储失败: %v", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
