package session

import "syscall"

// sysProcAttr starts the child in a new process group so console control
// events aimed at devsession are not delivered to it twice.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
