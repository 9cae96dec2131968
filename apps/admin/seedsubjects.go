package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/subject"
)

// defaultSubjects is the BCA catalog loaded on a fresh deployment.
var defaultSubjects = []subject.NewSubject{
	{Name: "Data Structures", Code: "BCA301", Year: 2, Semester: 3},
	{Name: "Operating System", Code: "BCA302", Year: 2, Semester: 3},
	{Name: "Database Management System", Code: "BCA303", Year: 2, Semester: 3},
}

// seedSubjects loads the default subject catalog, skipping codes that exist.
func (cli *commandLine) seedSubjects() error {
	ctx := context.Background()

	existing, err := cli.subjSvc.QueryAll(ctx)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(existing))
	for _, sub := range existing {
		taken[sub.Code] = true
	}

	for _, ns := range defaultSubjects {
		// codes are stored lowercased
		if taken[core.CleanString(ns.Code, true /* lower */)] {
			fmt.Printf("subject %s already exists; skipped\n", ns.Code)
			continue
		}
		sub, err := cli.subjSvc.Create(ctx, ns)
		if err != nil {
			return err
		}
		fmt.Printf("subject %s %q created: %s\n", sub.Code, sub.Name, sub.ID)
	}
	return nil
}
