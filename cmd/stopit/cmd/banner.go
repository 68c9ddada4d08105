package cmd

import (
	"fmt"
	"io"
)

const banner = `
  ____  _             ___ _   
 / ___|| |_ ___  _ __|_ _| |_ 
 \___ \| __/ _ \| '_ \| || __|
  ___) | || (_) | |_) | || |_ 
 |____/ \__\___/| .__/___|\__|
                |_|           
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  One craving at a time - Version %s\x1b[0m\n\n", Version)
}
