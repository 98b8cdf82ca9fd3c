// tokenhash prints the bcrypt hash of a caller secret for INTERNAL_TOKEN_HASH.
// The secret is read from the first line of stdin so it stays out of shell history.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"driver-provisioning/backend/internal/security"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("tokenhash: read secret: %v", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		log.Fatal("tokenhash: secret is empty")
	}
	hash, err := security.NewHasher(*cost).Hash([]byte(secret))
	if err != nil {
		log.Fatalf("tokenhash: %v", err)
	}
	fmt.Println(hash)
}
