package main

import (
	"os"

	algoqacmder "github.com/papercomputeco/algoqa/cmd/algoqa"
)

func main() {
	cmd := algoqacmder.NewAlgoqaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
