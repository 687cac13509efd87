// Package main is the BestFood app. Its first screen makes sure the runtime
// permissions the app depends on are granted before the main screen opens.
package main

import (
	_ "embed"

	"github.com/go-drift/drift/pkg/drift"
)

//go:embed drift.yaml
var driftYAML []byte

func main() {
	drift.NewApp(App()).Run()
}
