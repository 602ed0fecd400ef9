//go:build wasip1

// Mock interpreter for testing the executor without QuickJS.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o mock.wasm mock.go
//
// The code argument holds one command per line:
//
//	print <text>    write text and a newline to stdout
//	input <prompt>  ask the host and print the answer, or "<none>"
//	load <name>     print a support file, or fail with the host's error
//	fail <message>  write message to stderr and exit 1
//	spin            loop forever
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

func call(fn string, args map[string]any) (any, string) {
	payload, _ := json.Marshal(map[string]any{"fn": fn, "args": args})
	fmt.Fprintf(os.Stderr, "\x00RISE:%s\x00", payload)

	line, err := stdin.ReadString('\n')
	if err != nil {
		return nil, err.Error()
	}
	var resp struct {
		Data  any    `json:"data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, err.Error()
	}
	return resp.Data, resp.Error
}

func main() {
	if len(os.Args) < 2 {
		return
	}
	for _, line := range strings.Split(os.Args[1], "\n") {
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "print":
			fmt.Println(arg)
		case "input":
			data, _ := call("input", map[string]any{"prompt": arg})
			if data == nil {
				fmt.Println("<none>")
			} else {
				fmt.Println(data)
			}
		case "load":
			data, errMsg := call("read_file", map[string]any{"name": arg})
			if errMsg != "" {
				fmt.Fprint(os.Stderr, errMsg)
				os.Exit(1)
			}
			fmt.Print(data)
		case "fail":
			fmt.Fprint(os.Stderr, arg)
			os.Exit(1)
		case "spin":
			for {
			}
		}
	}
}
