/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

// Package main provides a minimal line-protocol FTP test client for driving
// a goftpd control channel from the command line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"

	"golang.org/x/term"
)

var (
	username = flag.String("username", "", "the username to use when authenticating.")
	password = flag.String("password", "", "the password to use when authenticating.")
	network  = flag.String("network", "tcp", "dial tcp or tcp6")
	address  = flag.String("address", "localhost:2121", "dial the provided address:port")
)

func main() {
	flag.Parse()
	if *username == "" {
		fmt.Println("invalid username, please provide one")
		os.Exit(1)
	}

	conn, err := net.Dial(*network, *address)
	if err != nil {
		fmt.Printf("dial %s: %v\n", *address, err)
		os.Exit(1)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	readReply(scanner)

	sendLine(conn, "USER "+*username)
	readReply(scanner)

	sendLine(conn, "PASS "+getPassword())
	readReply(scanner)
}

func sendLine(conn net.Conn, line string) {
	fmt.Fprintf(conn, "%s\r\n", line)
}

func readReply(scanner *bufio.Scanner) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			fmt.Printf("read: %v\n", err)
		}
		return
	}
	fmt.Println(scanner.Text())
}

func getPassword() string {
	if *password != "" {
		return *password
	}
	fmt.Print("Enter Password: ")
	raw, err := term.ReadPassword(0)
	if err != nil {
		fmt.Println("unable to read password")
		os.Exit(1)
	}
	fmt.Println()
	return string(raw)
}
