package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Server struct {
	ID            int64             `gorm:"type:bigserial;primaryKey"`
	NewVMName     string            `gorm:"column:new_vm_name;type:varchar(128);uniqueIndex;not null"`
	VMMemory      int               `gorm:"column:vm_memory;not null"`
	VMCores       int               `gorm:"column:vm_cores;not null"`
	CIUser        string            `gorm:"column:ci_user;type:varchar(64);not null"`
	CIPassword    string            `gorm:"column:ci_password;type:text;not null"`
	MySQLPassword string            `gorm:"column:mysql_password;type:text;not null"`
	IPConfig0     string            `gorm:"column:ipconfig0;type:varchar(255);not null"`
	IsMaster      string            `gorm:"column:is_master;type:varchar(128);not null"`
	Provider      string            `gorm:"type:varchar(32);not null;default:proxmox"`
	Status        string            `gorm:"type:varchar(32);not null;default:queued"`
	IP            string            `gorm:"type:varchar(64)"`
	LastJob       datatypes.JSONMap `gorm:"column:last_job;type:jsonb"`
	CreatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type ProxmoxCred struct {
	ID             int64     `gorm:"type:bigserial;primaryKey"`
	CredentialName string    `gorm:"type:varchar(255);not null"`
	APIUser        string    `gorm:"column:api_user;type:varchar(255);not null"`
	APIToken       string    `gorm:"column:api_token;type:varchar(255);not null"`
	APIURL         string    `gorm:"column:api_url;type:varchar(255);not null"`
	APITokenID     string    `gorm:"column:api_token_id;type:varchar(255);not null"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Group struct {
	ID          int64             `gorm:"type:bigserial;primaryKey"`
	ServerID    int64             `gorm:"column:server_id;not null;index"`
	LBAlgorithm string            `gorm:"column:lb_algorithm;type:varchar(64);not null"`
	ProxyIP     string            `gorm:"column:proxy_ip;type:varchar(64);not null"`
	Settings    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Server      Server            `gorm:"foreignKey:ServerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Server{},
		&ProxmoxCred{},
		&Group{},
	); err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&Group{}, "Server")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Group{},
		&ProxmoxCred{},
		&Server{},
	)
}
