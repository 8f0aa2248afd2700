package main

import (
	// registers the in-process dlib extractor
	_ "github.com/RudraShekhare/face-attendance-system/internal/extractor/dlib"
)

func main() {
	Execute()
}
