package main

import (
	"log"
	"os"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/storage/jsonfile"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := jsonfile.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		usrRepo: jsonfile.NewUserRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
