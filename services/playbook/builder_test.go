package playbook

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func sampleInput() VMInput {
	return VMInput{
		Name:     "db1",
		Memory:   2048,
		Cores:    2,
		User:     "jery",
		Password: "secret1",
		IPConfig: "ip=192.168.0.39/24,gw=192.168.0.1",
	}
}

func samplePlan(t *testing.T) ReplicationPlan {
	t.Helper()
	plan, err := NewReplicationPlan(
		"ip=192.168.0.39/24,gw=192.168.0.1",
		"ip=192.168.0.40/24,gw=192.168.0.1",
		"db1-r",
	)
	if err != nil {
		t.Fatalf("NewReplicationPlan: %v", err)
	}
	return plan
}

func TestBuildProvisionShape(t *testing.T) {
	pb := BuildProvision(sampleInput())
	if len(pb) != 1 {
		t.Fatalf("expected 1 play, got %d", len(pb))
	}
	if got := len(pb[0].Tasks); got != 3 {
		t.Fatalf("expected 3 tasks, got %d", got)
	}
	if pb[0].Hosts != "localhost" {
		t.Fatalf("play hosts = %q", pb[0].Hosts)
	}
	if pb[0].GatherFacts {
		t.Fatal("provision play must not gather facts")
	}

	out, err := pb.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		`vm_name: "db1"`,
		`vm_memory: "2048"`,
		"vm_cores: 2",
		`ci_password: "secret1"`,
		"clone: \"" + PrimaryTemplate + "\"",
		"state: started",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestBuildProvisionDeterministic(t *testing.T) {
	first, err := BuildProvision(sampleInput()).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := BuildProvision(sampleInput()).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("identical input produced different documents")
	}
}

func TestBuildReplicaShape(t *testing.T) {
	plan := samplePlan(t)
	in := sampleInput()
	in.Name = "db1-r"
	in.IPConfig = "ip=192.168.0.40/24,gw=192.168.0.1"

	pb := BuildReplica(in, plan)
	if len(pb) != 4 {
		t.Fatalf("expected 4 plays, got %d", len(pb))
	}

	wantPlays := []struct {
		hosts  string
		become bool
	}{
		{"localhost", false},
		{"localhost", false},
		{"mysql_primary", true},
		{"mysql_replica", true},
	}
	for i, want := range wantPlays {
		if pb[i].Hosts != want.hosts {
			t.Fatalf("play %d hosts = %q, want %q", i, pb[i].Hosts, want.hosts)
		}
		if pb[i].Become != want.become {
			t.Fatalf("play %d become = %v, want %v", i, pb[i].Become, want.become)
		}
	}

	out, err := pb.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		`primary_host: "192.168.0.39"`,
		`name: "192.168.0.40"`,
		"clone: \"" + ReplicaTemplate + "\"",
		"primary_auto_position: true",
		"mode: stopreplica",
		"mode: resetreplica",
		"mode: changeprimary",
		"mode: startreplica",
		"mode: getreplica",
		"gtid_mode = ON",
		"Restart MySQL",
		"Replica_IO_Running",
		"Slave_SQL_Running",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q", want)
		}
	}

	// Replica documents are deterministic too.
	again, err := BuildReplica(in, plan).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Fatal("identical input produced different replica documents")
	}
}

func TestBuildReplicaParsesAsYAML(t *testing.T) {
	in := sampleInput()
	in.Name = "db1-r"
	out, err := BuildReplica(in, samplePlan(t)).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var plays []map[string]any
	if err := yaml.Unmarshal(out, &plays); err != nil {
		t.Fatalf("document does not parse: %v", err)
	}
	if len(plays) != 4 {
		t.Fatalf("parsed %d plays, want 4", len(plays))
	}

	last := plays[3]
	tasks, ok := last["tasks"].([]any)
	if !ok {
		t.Fatalf("replica play tasks missing: %v", last)
	}
	if len(tasks) != 8 {
		t.Fatalf("replica play has %d tasks, want 8", len(tasks))
	}
	if _, ok := last["handlers"]; !ok {
		t.Fatal("replica play missing handlers")
	}
}

func TestReplicaServerID(t *testing.T) {
	a := ReplicaServerID("db1-r")
	if a < 2 {
		t.Fatalf("server id %d below reserved range", a)
	}
	if b := ReplicaServerID("db1-r"); b != a {
		t.Fatalf("server id not stable: %d vs %d", a, b)
	}
	if c := ReplicaServerID("db2-r"); c == a {
		t.Logf("hash collision between names is tolerated but unexpected: %d", c)
	}
}

func TestNewReplicationPlanRejectsBadConfig(t *testing.T) {
	if _, err := NewReplicationPlan("bogus", "ip=192.168.0.40/24,gw=192.168.0.1", "r"); err == nil {
		t.Fatal("expected error for malformed primary ipconfig")
	}
	if _, err := NewReplicationPlan("ip=192.168.0.39/24,gw=192.168.0.1", "bogus", "r"); err == nil {
		t.Fatal("expected error for malformed replica ipconfig")
	}
}
