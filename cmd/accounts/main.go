// Command accounts provisions relay accounts out of band: the relay wire
// itself runs the anonymous flow, so registration and verification happen
// here against the shared badger store.
//
// Usage:
//
//	accounts -db ./db register <username> <password>
//	accounts -db ./db verify <username> <password>
//	accounts -db ./db list
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chat-relay/internal/logging"
	"chat-relay/repositories"
)

func main() {
	dbPath := flag.String("db", "./db", "Path to badger DB")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("missing subcommand: register | verify | list")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users := repositories.NewUserRepository(db, logging.FromString("warn"))

	switch flag.Arg(0) {
	case "register":
		if flag.NArg() != 3 {
			log.Fatal("usage: register <username> <password>")
		}
		if err := users.Register(flag.Arg(1), flag.Arg(2)); err != nil {
			log.Fatal("Registration failed: ", err)
		}
		fmt.Printf("registered %q\n", flag.Arg(1))

	case "verify":
		if flag.NArg() != 3 {
			log.Fatal("usage: verify <username> <password>")
		}
		if users.Verify(flag.Arg(1), flag.Arg(2)) {
			fmt.Println("credentials OK")
		} else {
			fmt.Println("credentials rejected")
			os.Exit(1)
		}

	case "list":
		if err := listUsers(db); err != nil {
			log.Fatal("Listing failed: ", err)
		}

	default:
		log.Fatalf("unknown subcommand %q", flag.Arg(0))
	}
}

func listUsers(db *badger.DB) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Hash"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			username := strings.TrimPrefix(string(item.Key()), "user:")
			err := item.Value(func(v []byte) error {
				hash := string(v)
				// Only show the parameter header, never salt or digest.
				if i := strings.LastIndex(hash, "$"); i > 0 {
					hash = hash[:strings.LastIndex(hash[:i], "$")] + "$..."
				}
				table.Append([]string{username, hash})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}
