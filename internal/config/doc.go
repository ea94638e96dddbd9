// Package config provides configuration parsing for the queryguard server.
//
// The configuration is stored in queryguard.json. Every field is optional;
// command line flags override file values.
//
// # Configuration File Structure
//
//	{
//	  "addr": ":8080",
//	  "url": "/products?page=1",
//	  "schema": "filters.yaml",
//	  "mode": "strict",
//	  "historyMode": "replace",
//	  "shutdownTimeout": "10s",
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  },
//	  "metrics": {
//	    "namespace": "shop"
//	  },
//	  "trace": {
//	    "stdout": true
//	  },
//	  "s3": {
//	    "region": "eu-west-1"
//	  }
//	}
//
// The schema may be a path relative to the config file or an
// s3://bucket/key URI.
//
// # Usage
//
//	cfg, err := config.LoadFile("queryguard.json")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	logger := cfg.NewLogger(os.Stderr)
package config
