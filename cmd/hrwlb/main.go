package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/onestraw/hrwlb/service"
)

func main() {
	var flagConfig = flag.String("config", "hrwlb.json", "json or yaml configuration file")
	flag.Parse()

	s, err := service.New(*flagConfig)
	if err != nil {
		log.Fatalf("Load %s err=%v", *flagConfig, err)
	}

	if err := s.Run(); err != nil {
		log.Fatal(err)
	}
}
