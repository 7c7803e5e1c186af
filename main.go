// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// lnbctl - LNB controller tool
//
// Controls a dual-channel LNB power/polarity/band controller over USB
// serial or a WebSocket bridge, and can emulate the controller itself.

package main

import (
	"os"

	"github.com/Thermoquad/lnbctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
