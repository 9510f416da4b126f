package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-shellwords"
	"github.com/sisatech/tablewriter"

	"github.com/Revenant35/ext2-filesystem/ext2"
)

// shell is the REPL described by the original ext2 shell: "ls [path]",
// "stat <path>", "exit"/"quit", and a diagnostic for anything else.
type shell struct {
	fs  *ext2.FileSystem
	in  *bufio.Scanner
	out io.Writer
	err func(format string, args ...interface{})
}

func newShell(fs *ext2.FileSystem, in io.Reader, out io.Writer) *shell {
	red := color.New(color.FgRed).SprintfFunc()
	return &shell{
		fs:  fs,
		in:  bufio.NewScanner(in),
		out: out,
		err: func(format string, args ...interface{}) {
			fmt.Fprintln(os.Stderr, red(format, args...))
		},
	}
}

func (s *shell) run() {
	fmt.Fprintln(s.out, "Welcome to the ext2 filesystem shell.")
	fmt.Fprintln(s.out, "Available commands: ls [path], stat <path>, exit, quit")

	for {
		fmt.Fprint(s.out, "ext2> ")
		if !s.in.Scan() {
			return // EOF terminates the shell
		}

		args, err := shellwords.Parse(s.in.Text())
		if err != nil {
			s.err("parsing command: %v", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "ls":
			s.handleLs(args[1:])
		case "stat":
			s.handleStat(args[1:])
		case "exit", "quit":
			fmt.Fprintln(s.out, "Exiting shell.")
			return
		default:
			s.err("unknown command: %s", args[0])
		}
	}
}

func (s *shell) handleLs(args []string) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	inodeNum, err := s.fs.GetInodeForPath(path)
	if err != nil {
		s.err("could not find path %q: %v", path, err)
		return
	}

	entries, err := s.fs.ListDirectoryEntries(inodeNum)
	if err != nil {
		s.err("listing %q: %v", path, err)
		return
	}

	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Inode", "Rec Len", "Name Len", "Type", "Name"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range entries {
		table.Append([]string{
			strconv.FormatUint(uint64(e.Inode), 10),
			strconv.FormatUint(uint64(e.RecLen), 10),
			strconv.FormatUint(uint64(e.NameLen), 10),
			strconv.FormatUint(uint64(e.FileType), 10),
			e.Name,
		})
	}
	table.Render()
}

func (s *shell) handleStat(args []string) {
	if len(args) == 0 {
		s.err("usage: stat <path>")
		return
	}
	path := args[0]

	inodeNum, err := s.fs.GetInodeForPath(path)
	if err != nil {
		s.err("could not find path %q: %v", path, err)
		return
	}

	in, err := s.fs.ReadInode(inodeNum)
	if err != nil {
		s.err("reading inode %d: %v", inodeNum, err)
		return
	}

	fmt.Fprintf(s.out, "Inode: %d\n", inodeNum)
	fmt.Fprintf(s.out, "Mode: 0%o\n", in.Mode)
	fmt.Fprintf(s.out, "Size: %d\n", in.Size)
	fmt.Fprintf(s.out, "Links: %d\n", in.LinksCount)
	fmt.Fprintf(s.out, "Blocks:")
	for _, b := range in.Block {
		if b != 0 {
			fmt.Fprintf(s.out, " %d", b)
		}
	}
	fmt.Fprintln(s.out)
}
