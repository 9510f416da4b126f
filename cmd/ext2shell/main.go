// Command ext2shell is an interactive read-only shell over an ext2 image.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/Revenant35/ext2-filesystem/backend/file"
	"github.com/Revenant35/ext2-filesystem/ext2"
)

func main() {
	verbose := flag.BoolP("verbose", "v", false, "log ext2 internal warnings to stderr")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] <ext2_image_file>\n", os.Args[0])
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.ErrorLevel)
	}

	storage, err := file.OpenFromPath(imagePath, true)
	if err != nil {
		log.Fatalf("opening filesystem image: %v", err)
	}

	fs, err := ext2.Open(storage)
	if err != nil {
		log.Fatalf("reading filesystem from %s: %v", imagePath, err)
	}

	sh := newShell(fs, os.Stdin, os.Stdout)
	sh.run()

	if err := fs.Close(); err != nil {
		log.Fatalf("closing filesystem image: %v", err)
	}
}
