// Package `p2pchat` implements peer application for chat over TCP.
// Every running instance listens for other peers and is able to talk to them.
//
// To compile chat peer locally, run from package directory:
//
//	go install .
//
// Listen only:
//
//	p2pchat listen --port 2001
//
// Talk to another peer, every line of stdin is sent as a message:
//
//	p2pchat --name alice --icon alice.png talk 192.168.0.10:2001
//
// Configuration is read from p2pchat.yaml (current folder or $HOME/.p2pchat),
// P2PCHAT_* environment variables and command line flags, the latter win.
package main
