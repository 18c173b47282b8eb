// maestro - persona-aware model routing and cost accounting.
//
// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/orchestra-ai/maestro/internal/cli"

func main() {
	cli.Execute()
}
