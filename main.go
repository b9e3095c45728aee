/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/beaconhq/beacon/cmd"

func main() {
	cmd.Execute()
}
