// Package config loads operator configuration for the auth framework.
//
// A YAML file is optional; every key has a default and can be overridden
// from the environment with the AUTHFW_ prefix, sections joined by '_':
//
//	framework:
//	  issuer: https://auth.example.com
//	  audience: https://api.example.com
//	  rsa_private_key_file: /etc/authfw/signing.pem
//	storage:
//	  backend: redis
//	  redis:
//	    addr: redis:6379
//
//	AUTHFW_FRAMEWORK_HMAC_SECRET=... AUTHFW_STORAGE_BACKEND=memory
//
// Load validates the result and reports every problem at once through
// *ValidationError. The library packages never read configuration themselves;
// this package only translates the document into their Config values.
package config
