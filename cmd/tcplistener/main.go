package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"

	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("Listen error:", err)
		return
	}
	defer listener.Close()
	fmt.Printf("Listening on %s...\n", *addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}

		go handleConnection(conn)
	}
}

// handleConnection prints every request on conn and answers each with a
// short text body
func handleConnection(conn net.Conn) {
	defer conn.Close()

	stream := request.NewStream(conn, request.Limits{})
	for {
		req, err := stream.ReadHead()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Println("failed to read request:", err)
			}
			return
		}

		if err := req.ReadBody(); err != nil {
			fmt.Println("failed to read body:", err)
			return
		}

		printRequest(req)

		w := response.NewWriter(conn)
		if req.WantsClose() {
			w.Header().Set("Connection", "close")
		}
		if err := w.Text("Hello from your HTTP server!\n"); err != nil || req.WantsClose() {
			return
		}
	}
}

func printRequest(req *request.Request) {
	fmt.Println("Request line:")
	fmt.Printf("- Method: %s\n", req.Method)
	fmt.Printf("- Target: %s\n", req.Target)
	fmt.Printf("- Version: %s\n", req.Version)

	fmt.Println("Headers:")
	req.Headers.Each(func(name, value string) {
		fmt.Printf("- %s: %s\n", name, value)
	})

	fmt.Println("Body:")
	fmt.Printf("%s\n", string(req.Body))
}
