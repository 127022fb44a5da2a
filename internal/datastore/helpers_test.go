package datastore

import "github.com/tphakala/storm-intake/internal/conf"

func confMySQL(host, port, user, pass, db string) conf.MySQLSettings {
	return conf.MySQLSettings{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Username: user,
		Password: pass,
		Database: db,
	}
}
