// ./main.go
package main

import (
	"github.com/nahxdasd/ups-aras-kargotakip/cmd"
)

func main() {
	cmd.Execute()
}
