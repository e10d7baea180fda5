package main

import "github.com/goplus/magicksys/cmd/magicksys/internal"

func main() {
	internal.Execute()
}
