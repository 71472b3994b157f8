// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"

	_ "github.com/bbvm-labs/bbvm/interpreter/bbvm"
)

var ListCmd = cli.Command{
	Action: doList,
	Name:   "list",
	Usage:  "List all available interpreter implementations",
}

func doList(context *cli.Context) error {
	names := maps.Keys(vm.GetAllRegisteredInterpreters())
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
