package orchestrator

import (
	"fmt"
	"strings"

	"haforge/services/playbook"
)

const (
	maxNameLen     = 128
	maxUserLen     = 64
	minPasswordLen = 6
	maxPasswordLen = 255
	maxIPConfigLen = 255
)

var knownProviders = map[string]bool{
	"proxmox": true,
	"azure":   true,
}

func validateServerInput(in ServerInput) error {
	if err := validateCommon(in.NewVMName, in.VMMemory, in.VMCores, in.CIUser,
		in.CIPassword, in.MySQLPassword, in.IPConfig0); err != nil {
		return err
	}
	if strings.TrimSpace(in.IsMaster) == "" {
		return &ValidationError{Field: "is_master", Message: "is required"}
	}
	if len(in.IsMaster) > maxNameLen {
		return &ValidationError{Field: "is_master", Message: lenMsg(1, maxNameLen)}
	}
	if in.Provider == "" || !knownProviders[in.Provider] {
		return &ValidationError{Field: "provider", Message: "must be one of proxmox, azure"}
	}
	return nil
}

func validateReplicaInput(in ReplicaInput) error {
	if err := validateCommon(in.NewVMName, in.VMMemory, in.VMCores, in.CIUser,
		in.CIPassword, in.MySQLPassword, in.IPConfig0); err != nil {
		return err
	}
	if in.Provider != "" && !knownProviders[in.Provider] {
		return &ValidationError{Field: "provider", Message: "must be one of proxmox, azure"}
	}
	return nil
}

func validateCommon(name string, memory, cores int, user, ciPass, mysqlPass, ipconfig string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "new_vm_name", Message: "is required"}
	}
	if len(name) > maxNameLen {
		return &ValidationError{Field: "new_vm_name", Message: lenMsg(1, maxNameLen)}
	}
	if memory < 1 {
		return &ValidationError{Field: "vm_memory", Message: "must be at least 1"}
	}
	if cores < 1 {
		return &ValidationError{Field: "vm_cores", Message: "must be at least 1"}
	}
	if strings.TrimSpace(user) == "" {
		return &ValidationError{Field: "ci_user", Message: "is required"}
	}
	if len(user) > maxUserLen {
		return &ValidationError{Field: "ci_user", Message: lenMsg(1, maxUserLen)}
	}
	if err := validatePassword("ci_password", ciPass); err != nil {
		return err
	}
	if err := validatePassword("mysql_password", mysqlPass); err != nil {
		return err
	}
	if strings.TrimSpace(ipconfig) == "" {
		return &ValidationError{Field: "ipconfig0", Message: "is required"}
	}
	if len(ipconfig) > maxIPConfigLen {
		return &ValidationError{Field: "ipconfig0", Message: lenMsg(1, maxIPConfigLen)}
	}
	if _, err := playbook.HostFromIPConfig(ipconfig); err != nil {
		return &ValidationError{Field: "ipconfig0", Message: err.Error()}
	}
	return nil
}

func validatePassword(field, value string) error {
	if len(value) < minPasswordLen || len(value) > maxPasswordLen {
		return &ValidationError{Field: field, Message: lenMsg(minPasswordLen, maxPasswordLen)}
	}
	return nil
}

func lenMsg(min, max int) string {
	return fmt.Sprintf("length must be between %d and %d", min, max)
}
