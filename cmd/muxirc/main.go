// Command muxirc runs the bouncer engine: one persistent upstream IRC
// connection multiplexed to any number of local downstream clients.
package main

import (
	"flag"
	"log"

	"github.com/jes/muxirc"
)

func main() {
	log.SetFlags(0)

	confPath := flag.String("conf", "", "path to configuration file")
	flag.Parse()

	if *confPath == "" {
		flag.PrintDefaults()
		log.Fatal("-conf is required")
	}

	cfg, err := muxirc.ReadConfigFile(*confPath)
	if err != nil {
		log.Fatalf("loading configuration: %s", err)
	}

	engine := muxirc.NewEngine(cfg, nil)
	if err := engine.Run(); err != nil {
		log.Fatalf("%s", err)
	}
}
