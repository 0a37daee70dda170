/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/jobtracker/apiserver/cmd"

func main() {
	cmd.Execute()
}
