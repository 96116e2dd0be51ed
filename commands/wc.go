package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goshell/gosh/core/proc"
)

type wcCounts struct {
	lines int
	words int
	bytes int
}

func (c *wcCounts) add(other wcCounts) {
	c.lines += other.lines
	c.words += other.words
	c.bytes += other.bytes
}

func countFrom(r io.Reader) (wcCounts, error) {
	var out wcCounts
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		out.bytes += len(line)
		out.words += len(strings.Fields(line))
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out.lines++
	}
}

// Wc implements the UNIX wc command.
func Wc(p proc.Process) int {
	cmd := &SimpleCommand{
		Use:   "wc [-lwc] [FILE]...",
		Short: "Print newline, word, and byte counts.",
	}

	opt := cmd.Flags()
	showLines := opt.Bool('l', "print the newline counts")
	showWords := opt.Bool('w', "print the word counts")
	showBytes := opt.Bool('c', "print the byte counts")

	return cmd.Run(p, func() int {
		if !*showLines && !*showWords && !*showBytes {
			*showLines, *showWords, *showBytes = true, true, true
		}

		render := func(c wcCounts, name string) {
			var fields []string
			if *showLines {
				fields = append(fields, fmt.Sprintf("%7d", c.lines))
			}
			if *showWords {
				fields = append(fields, fmt.Sprintf("%7d", c.words))
			}
			if *showBytes {
				fields = append(fields, fmt.Sprintf("%7d", c.bytes))
			}
			if name != "" {
				fields = append(fields, name)
			}
			fmt.Fprintln(p.Stdout(), strings.Join(fields, " "))
		}

		args := opt.Args()
		if len(args) == 0 {
			counts, err := countFrom(p.Stdin())
			if err != nil {
				fmt.Fprintf(p.Stderr(), "wc: %v\n", err)
				return 1
			}
			render(counts, "")
			return 0
		}

		var total wcCounts
		status := 0
		for _, arg := range args {
			path := arg
			if !filepath.IsAbs(path) {
				path = filepath.Join(p.Getwd(), path)
			}
			fd, err := os.Open(path)
			if err != nil {
				fmt.Fprintf(p.Stderr(), "wc: %v\n", err)
				status = 1
				continue
			}
			counts, err := countFrom(fd)
			fd.Close()
			if err != nil {
				fmt.Fprintf(p.Stderr(), "wc: %v\n", err)
				status = 1
				continue
			}
			render(counts, arg)
			total.add(counts)
		}
		if len(args) > 1 {
			render(total, "total")
		}
		return status
	})
}

var _ proc.CommandFunc = Wc

func init() {
	addCmd("wc", Wc)
}
