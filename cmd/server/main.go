package main

import (
	"github.com/eleven-am/transcribe-stream/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
