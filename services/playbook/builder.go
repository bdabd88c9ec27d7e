package playbook

import (
	"hash/fnv"
	"strconv"
)

// Fixed identifiers baked into every generated document. The templates live
// on the Proxmox node; the replication and operational accounts are
// service-level credentials distinct from the per-VM cloud-init user.
const (
	PrimaryTemplate = "mysql-primary-tpl"
	ReplicaTemplate = "mysql-replica-tpl"

	replicationConfPath = "/etc/mysql/mysql.conf.d/replication.cnf"

	opsUser      = "haops"
	opsPassword  = "haops-operations"
	replUser     = "replicator"
	replPassword = "replicator-secret"
)

// VMInput carries the validated fields needed to render a provisioning
// document. Password is plaintext and must only be held for the duration of
// the build.
type VMInput struct {
	Name     string
	Memory   int
	Cores    int
	User     string
	Password string
	IPConfig string
}

// ReplicationPlan is derived per request from the parent record and the new
// replica input; it is never persisted on its own.
type ReplicationPlan struct {
	PrimaryHost string
	ReplicaHost string
	ReplUser    string
	ReplPass    string
	ServerID    int
}

// NewReplicationPlan extracts both host addresses and assigns the replica a
// stable server id derived from its name.
func NewReplicationPlan(primaryIPConfig, replicaIPConfig, replicaName string) (ReplicationPlan, error) {
	primaryHost, err := HostFromIPConfig(primaryIPConfig)
	if err != nil {
		return ReplicationPlan{}, err
	}
	replicaHost, err := HostFromIPConfig(replicaIPConfig)
	if err != nil {
		return ReplicationPlan{}, err
	}

	return ReplicationPlan{
		PrimaryHost: primaryHost,
		ReplicaHost: replicaHost,
		ReplUser:    replUser,
		ReplPass:    replPassword,
		ServerID:    ReplicaServerID(replicaName),
	}, nil
}

// ReplicaServerID maps a replica name onto a MySQL server id. Id 1 is
// reserved for primaries, so the range starts at 2.
func ReplicaServerID(name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32()%999_997) + 2
}

// BuildProvision renders the single-VM provisioning document: clone the
// primary template, apply cloud-init configuration, power on.
func BuildProvision(in VMInput) Playbook {
	return Playbook{provisionPlay(in, PrimaryTemplate, nil)}
}

// BuildReplica renders the four-play replica document: provision the VM from
// the replica template, register both database hosts, ensure the replication
// account on the primary, then configure and verify GTID replication on the
// replica.
func BuildReplica(in VMInput, plan ReplicationPlan) Playbook {
	extraVars := Mapping{Str("primary_host", plan.PrimaryHost)}

	return Playbook{
		provisionPlay(in, ReplicaTemplate, extraVars),
		inventoryPlay(plan),
		primaryPlay(plan),
		replicaPlay(plan),
	}
}

func provisionPlay(in VMInput, template string, extraVars Mapping) Play {
	vars := M(
		Str("vm_name", in.Name),
		Str("vm_memory", strconv.Itoa(in.Memory)),
		KV("vm_cores", in.Cores),
		Str("ci_user", in.User),
		Str("ci_password", in.Password),
		Str("ipconfig0", in.IPConfig),
	)
	vars = append(vars, extraVars...)

	return Play{
		Name:        "Provision VM " + in.Name,
		Hosts:       "localhost",
		GatherFacts: false,
		Vars:        vars,
		Tasks: []Task{
			{
				Name:   "Clone VM from template",
				Module: "community.general.proxmox_kvm",
				Params: proxmoxParams(
					Str("clone", template),
					KV("name", "{{ vm_name }}"),
					KV("storage", "local-lvm"),
					KV("timeout", 300),
				),
			},
			{
				Name:   "Apply cloud-init configuration",
				Module: "community.general.proxmox_kvm",
				Params: proxmoxParams(
					KV("name", "{{ vm_name }}"),
					KV("update", true),
					KV("memory", "{{ vm_memory }}"),
					KV("cores", "{{ vm_cores }}"),
					KV("ciuser", "{{ ci_user }}"),
					KV("cipassword", "{{ ci_password }}"),
					KV("ipconfig", M(KV("ipconfig0", "{{ ipconfig0 }}"))),
				),
			},
			{
				Name:   "Start VM",
				Module: "community.general.proxmox_kvm",
				Params: proxmoxParams(
					KV("name", "{{ vm_name }}"),
					KV("state", "started"),
				),
			},
		},
	}
}

// proxmoxParams prefixes module arguments with the API connection fields.
// Credentials resolve from the runner's environment, never from the document.
func proxmoxParams(params ...Entry) Mapping {
	base := M(
		KV("api_user", "{{ lookup('env', 'PROXMOX_API_USER') }}"),
		KV("api_token_id", "{{ lookup('env', 'PROXMOX_API_TOKEN_ID') }}"),
		KV("api_token_secret", "{{ lookup('env', 'PROXMOX_API_TOKEN_SECRET') }}"),
		KV("api_host", "{{ lookup('env', 'PROXMOX_API_HOST') }}"),
		KV("node", "{{ lookup('env', 'PROXMOX_NODE') }}"),
	)
	return append(base, params...)
}

func inventoryPlay(plan ReplicationPlan) Play {
	registerHost := func(name, host, group string) Task {
		return Task{
			Name:   "Register " + name + " host",
			Module: "ansible.builtin.add_host",
			Params: M(
				Str("name", host),
				KV("groups", group),
				Str("ansible_user", opsUser),
				Str("ansible_password", opsPassword),
				KV("ansible_python_interpreter", "/usr/bin/python3"),
			),
		}
	}
	waitFor := func(name, host string) Task {
		return Task{
			Name:   "Wait for " + name + " SSH",
			Module: "ansible.builtin.wait_for",
			Params: M(
				Str("host", host),
				KV("port", 22),
				KV("timeout", 300),
			),
		}
	}

	return Play{
		Name:        "Register database hosts",
		Hosts:       "localhost",
		GatherFacts: false,
		Tasks: []Task{
			registerHost("primary", plan.PrimaryHost, "mysql_primary"),
			registerHost("replica", plan.ReplicaHost, "mysql_replica"),
			waitFor("primary", plan.PrimaryHost),
			waitFor("replica", plan.ReplicaHost),
		},
	}
}

func primaryPlay(plan ReplicationPlan) Play {
	return Play{
		Name:        "Prepare primary for replication",
		Hosts:       "mysql_primary",
		GatherFacts: false,
		Become:      true,
		Tasks: []Task{
			{
				Name:   "Ensure replication account exists",
				Module: "community.mysql.mysql_user",
				Params: withMySQLLogin(M(
					Str("name", plan.ReplUser),
					Str("password", plan.ReplPass),
					KV("host", "%"),
					KV("priv", "*.*:REPLICATION SLAVE"),
					KV("state", "present"),
				)),
			},
		},
	}
}

func replicaPlay(plan ReplicationPlan) Play {
	replicationConf := "[mysqld]\n" +
		"server-id = {{ replica_server_id }}\n" +
		"relay-log = relay-bin\n" +
		"log-bin = mysql-bin\n" +
		"gtid_mode = ON\n" +
		"enforce_gtid_consistency = ON\n" +
		"read_only = ON\n" +
		"super_read_only = ON\n"

	replMode := func(name, mode string) Task {
		return Task{
			Name:   name,
			Module: "community.mysql.mysql_replication",
			Params: withMySQLLogin(M(KV("mode", mode))),
		}
	}

	verifyWhen := "(repl_status.Slave_IO_Running | default(repl_status.Replica_IO_Running) | default('No')) != 'Yes' or " +
		"(repl_status.Slave_SQL_Running | default(repl_status.Replica_SQL_Running) | default('No')) != 'Yes'"

	return Play{
		Name:        "Configure replica",
		Hosts:       "mysql_replica",
		GatherFacts: false,
		Become:      true,
		Vars: M(
			Str("primary_host", plan.PrimaryHost),
			KV("replica_server_id", plan.ServerID),
		),
		Tasks: []Task{
			{
				Name:   "Write replication configuration",
				Module: "ansible.builtin.copy",
				Params: M(
					KV("dest", replicationConfPath),
					KV("content", replicationConf),
					KV("owner", "mysql"),
					KV("group", "mysql"),
					KV("mode", "0640"),
				),
				Notify: []string{"Restart MySQL"},
			},
			{
				Name:   "Apply pending restart",
				Module: "ansible.builtin.meta",
				Params: "flush_handlers",
			},
			replMode("Stop replication", "stopreplica"),
			replMode("Reset replication state", "resetreplica"),
			{
				Name:   "Point replica at primary",
				Module: "community.mysql.mysql_replication",
				Params: withMySQLLogin(M(
					KV("mode", "changeprimary"),
					KV("primary_host", "{{ primary_host }}"),
					Str("primary_user", plan.ReplUser),
					Str("primary_password", plan.ReplPass),
					KV("primary_auto_position", true),
				)),
			},
			replMode("Start replication", "startreplica"),
			{
				Name:     "Fetch replication status",
				Module:   "community.mysql.mysql_replication",
				Params:   withMySQLLogin(M(KV("mode", "getreplica"))),
				Register: "repl_status",
			},
			{
				Name:   "Verify replication threads",
				Module: "ansible.builtin.fail",
				Params: M(KV("msg", "Replication unhealthy: IO or SQL thread is not running on the replica")),
				When:   verifyWhen,
			},
		},
		Handlers: []Task{
			{
				Name:   "Restart MySQL",
				Module: "ansible.builtin.service",
				Params: M(KV("name", "mysql"), KV("state", "restarted")),
			},
		},
	}
}

func withMySQLLogin(params Mapping) Mapping {
	return append(params,
		KV("login_user", "root"),
		KV("login_password", "{{ lookup('env', 'MYSQL_ROOT_PASSWORD') }}"),
		KV("login_unix_socket", "/var/run/mysqld/mysqld.sock"),
	)
}
