/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
