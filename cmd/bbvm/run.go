// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bbvm-labs/bbvm/vm"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"

	_ "github.com/bbvm-labs/bbvm/interpreter/bbvm"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run byte code in a fresh in-memory environment",
	ArgsUsage: "<code in hex>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "interpreter",
			Usage: "the interpreter implementation to use",
			Value: "bbvm",
		},
		&cli.StringFlag{
			Name:  "revision",
			Usage: "the protocol revision to run under",
			Value: "Cancun",
		},
		&cli.Int64Flag{
			Name:  "gas",
			Usage: "the gas budget of the call",
			Value: 1_000_000,
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "the call data in hex",
		},
		&cli.Uint64Flag{
			Name:  "value",
			Usage: "the value transferred with the call",
		},
		&cli.BoolFlag{
			Name:  "static",
			Usage: "run the code in static mode",
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() < 1 {
		return fmt.Errorf("missing code argument")
	}
	code, err := decodeHex(context.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid code: %w", err)
	}
	input, err := decodeHex(context.String("input"))
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	revision, err := parseRevision(context.String("revision"))
	if err != nil {
		return err
	}

	interpreter, err := vm.NewInterpreter(context.String("interpreter"))
	if err != nil {
		return err
	}

	var (
		sender    = vm.Address{0x01}
		recipient = vm.Address{0x02}
	)

	host := newRunHost(interpreter, vm.BlockParameters{
		BlockNumber: 1000,
		Timestamp:   1715000000,
		GasLimit:    30_000_000,
		Revision:    revision,
	})
	host.setBalance(sender, vm.NewValue(0, 0, 1, 0))
	host.setCode(recipient, code)

	gas := vm.Gas(context.Int64("gas"))
	result, err := interpreter.Run(vm.Parameters{
		BlockParameters: host.blockParams,
		Host:            host,
		Static:          context.Bool("static"),
		Gas:             gas,
		Recipient:       recipient,
		Sender:          sender,
		Input:           input,
		Value:           vm.NewValue(context.Uint64("value")),
		Code:            code,
	})
	if err != nil {
		return err
	}

	fmt.Printf("status:   %v\n", result.Status)
	fmt.Printf("gas used: %s\n", unitconv.FormatPrefix(float64(gas-result.GasLeft), unitconv.SI, 2))
	fmt.Printf("refund:   %d\n", result.GasRefund)
	if len(result.Output) > 0 {
		fmt.Printf("output:   0x%x\n", result.Output)
	}
	for _, log := range host.logs {
		fmt.Printf("log:      %v %v 0x%x\n", log.Address, log.Topics, []byte(log.Data))
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func parseRevision(name string) (vm.Revision, error) {
	for r := vm.Revision(0); int(r) < vm.NumRevisions; r++ {
		if strings.EqualFold(r.String(), name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown revision: %s", name)
}
